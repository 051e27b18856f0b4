package engine

import (
	"context"
	"sync"
)

// Call is one recorded MockEngine invocation.
type Call struct {
	Method string
	Ref    string // image or container reference
	Build  *BuildSpec
	Run    *RunSpec
}

// MockEngine is a test double for Engine. It records calls and keeps a set
// of known images so that builds and removals are visible to ImageExists.
type MockEngine struct {
	mu sync.Mutex

	Calls  []Call
	Images map[string]bool

	// BuildCode is returned by BuildImage. A successful build (0) adds the tag to Images.
	BuildCode int
	// BuildFn, if set, replaces BuildCode. It sees the build script while it still exists.
	BuildFn func(ctx context.Context, spec BuildSpec) (int, error)
	// RunFn, if set, decides the result of each Run.
	RunFn func(ctx context.Context, spec RunSpec) (int, error)
	// Err, if set, is returned by Ping and ImageExists.
	Err error
}

// NewMockEngine returns a MockEngine that already knows the given images.
func NewMockEngine(images ...string) *MockEngine {
	m := &MockEngine{Images: make(map[string]bool)}
	for _, img := range images {
		m.Images[img] = true
	}
	return m
}

func (m *MockEngine) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, c)
}

func (m *MockEngine) Ping(ctx context.Context) error {
	m.record(Call{Method: "Ping"})
	return m.Err
}

func (m *MockEngine) ImageExists(ctx context.Context, ref string) (bool, error) {
	m.record(Call{Method: "ImageExists", Ref: ref})
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Images[ref], nil
}

func (m *MockEngine) BuildImage(ctx context.Context, spec BuildSpec) (int, error) {
	m.record(Call{Method: "BuildImage", Ref: spec.Tag, Build: &spec})
	code, err := m.BuildCode, error(nil)
	if m.BuildFn != nil {
		code, err = m.BuildFn(ctx, spec)
	}
	if code == 0 && err == nil {
		m.mu.Lock()
		m.Images[spec.Tag] = true
		m.mu.Unlock()
	}
	return code, err
}

func (m *MockEngine) RemoveImage(ctx context.Context, ref string) error {
	m.record(Call{Method: "RemoveImage", Ref: ref})
	m.mu.Lock()
	delete(m.Images, ref)
	m.mu.Unlock()
	return nil
}

func (m *MockEngine) Run(ctx context.Context, spec RunSpec) (int, error) {
	m.record(Call{Method: "Run", Ref: spec.Name, Run: &spec})
	if m.RunFn != nil {
		return m.RunFn(ctx, spec)
	}
	return 0, nil
}

func (m *MockEngine) Commit(ctx context.Context, container, ref string) error {
	m.record(Call{Method: "Commit", Ref: container + "->" + ref})
	return nil
}

func (m *MockEngine) KillContainer(ctx context.Context, name string) error {
	m.record(Call{Method: "KillContainer", Ref: name})
	return nil
}

func (m *MockEngine) RemoveContainer(ctx context.Context, name string) error {
	m.record(Call{Method: "RemoveContainer", Ref: name})
	return nil
}

// Methods returns the recorded method names in order.
func (m *MockEngine) Methods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		out[i] = c.Method
	}
	return out
}

// CallsTo returns the recorded calls of one method.
func (m *MockEngine) CallsTo(method string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

var _ Engine = (*MockEngine)(nil)
