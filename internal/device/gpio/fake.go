package gpio

import "sync"

// FakeLine records the values written to it.
type FakeLine struct {
	mu       sync.Mutex
	Values   []int
	Closed   bool
	SetError error
}

func (f *FakeLine) SetValue(value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetError != nil {
		return f.SetError
	}
	f.Values = append(f.Values, value)

	return nil
}

func (f *FakeLine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Closed = true
	return nil
}
