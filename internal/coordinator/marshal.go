package coordinator

import "encoding/json"

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err) // only ever called with the package's own payload types
	}
	return data
}
