package news

import "encoding/json"

// MarshalJSON adds the calendar date as "fecha".
func (i Item) MarshalJSON() ([]byte, error) {
	type alias Item
	return json.Marshal(struct {
		alias
		Fecha string `json:"fecha"`
	}{alias: alias(i), Fecha: i.Fecha()})
}
