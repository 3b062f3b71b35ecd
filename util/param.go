package util

// Param is the broadcast channel data type, communicating meter updates to
// the attached presentation sinks
type Param struct {
	Meter string      `json:"meter,omitempty"`
	Key   string      `json:"key"`
	Val   interface{} `json:"val"`
}

// UniqueID returns the params unique id, scoped by meter
func (p Param) UniqueID() string {
	if p.Meter == "" {
		return p.Key
	}
	return p.Meter + "." + p.Key
}
