package util

// Tee distributes parameters to subscribers
type Tee struct {
	recv []chan<- Param
}

// Attach creates a new receiver channel and attaches it to the tee
func (t *Tee) Attach() <-chan Param {
	out := make(chan Param, 16)
	t.recv = append(t.recv, out)
	return out
}

// Run starts parameter distribution
func (t *Tee) Run(in <-chan Param) {
	for msg := range in {
		for _, recv := range t.recv {
			recv <- msg
		}
	}
}
