package correlation

import "encoding/json"

func encodeMatrix(matrix map[string]map[string]float64) ([]byte, error) {
	return json.Marshal(matrix)
}

func decodeMatrix(data []byte) (map[string]map[string]float64, error) {
	var matrix map[string]map[string]float64
	if err := json.Unmarshal(data, &matrix); err != nil {
		return nil, err
	}
	return matrix, nil
}
