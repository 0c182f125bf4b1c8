package bi

// Score is the belonging index of a single entity.
type Score struct {
	ID    string  `json:"id" yaml:"id"`
	Label string  `json:"class" yaml:"class"`
	Value float64 `json:"bi" yaml:"bi"`

	// Same and Considered are the neighbor counts behind Value.
	Same       int `json:"same" yaml:"same"`
	Considered int `json:"considered" yaml:"considered"`
	// Window is the nominal denominator: class size minus one, at least 1.
	Window int `json:"window" yaml:"window"`
}

// Window returns the number of nearest neighbors considered for an entity of
// the given class size.
func Window(classSize int) int {
	n := classSize - 1
	if n < 1 {
		return 1
	}
	return n
}

// Compute scores the entity against its nearest-first neighbor sequence.
//
// The sequence may contain the entity itself at any position; it is skipped
// by ID. Only the first Window(size) other neighbors are considered and the
// score is always divided by that nominal window, even when the sequence runs
// out before the window is filled.
func Compute(id string, neighbors []string, classes *Classes) (*Score, error) {
	label, err := classes.Label(id)
	if err != nil {
		return nil, err
	}

	s := &Score{
		ID:     id,
		Label:  label,
		Window: Window(classes.Size(label)),
	}

	for _, nb := range neighbors {
		if s.Considered == s.Window {
			break
		}
		if nb == id {
			continue
		}

		nbLabel, err := classes.Label(nb)
		if err != nil {
			return nil, err
		}
		if nbLabel == label {
			s.Same++
		}
		s.Considered++
	}

	s.Value = float64(s.Same) / float64(s.Window)
	return s, nil
}
