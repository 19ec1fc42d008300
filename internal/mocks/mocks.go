// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/domharvest/internal/browser"
)

// -- Node Mock --

// Node is a named element handle for mocked drivers.
type Node string

func (n Node) String() string { return string(n) }

// -- Driver Mock --

// MockDriver implements browser.Driver for testing. Closed reports whether
// Close ran, for tests that check ownership of the driver.
type MockDriver struct {
	mock.Mock
	mu     sync.Mutex
	closed bool
}

var _ browser.Driver = (*MockDriver)(nil)

func NewMockDriver() *MockDriver {
	return &MockDriver{}
}

// QueryFunc can stand in for the node slice in a QueryCSS or QueryXPath
// expectation when the answer depends on the call's context, e.g. a slow page.
type QueryFunc func(ctx context.Context) ([]browser.Node, error)

func nodes(ctx context.Context, args mock.Arguments) ([]browser.Node, error) {
	switch v := args.Get(0).(type) {
	case nil:
		return nil, args.Error(1)
	case QueryFunc:
		return v(ctx)
	default:
		return v.([]browser.Node), args.Error(1)
	}
}

func (m *MockDriver) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockDriver) QueryCSS(ctx context.Context, scope browser.Node, selector string) ([]browser.Node, error) {
	return nodes(ctx, m.Called(ctx, scope, selector))
}

func (m *MockDriver) QueryXPath(ctx context.Context, scope browser.Node, expr string) ([]browser.Node, error) {
	return nodes(ctx, m.Called(ctx, scope, expr))
}

func (m *MockDriver) EvaluateXPathString(ctx context.Context, scope browser.Node, expr string) (string, bool, error) {
	args := m.Called(ctx, scope, expr)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockDriver) Attribute(ctx context.Context, n browser.Node, name string) (string, bool, error) {
	args := m.Called(ctx, n, name)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockDriver) InnerText(ctx context.Context, n browser.Node) (string, error) {
	args := m.Called(ctx, n)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) TagName(ctx context.Context, n browser.Node) (string, error) {
	args := m.Called(ctx, n)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Click(ctx context.Context, n browser.Node, force bool) error {
	return m.Called(ctx, n, force).Error(0)
}

func (m *MockDriver) SetValue(ctx context.Context, n browser.Node, value string) error {
	return m.Called(ctx, n, value).Error(0)
}

func (m *MockDriver) SelectOption(ctx context.Context, n browser.Node, label string) error {
	return m.Called(ctx, n, label).Error(0)
}

func (m *MockDriver) Press(ctx context.Context, n browser.Node, key string) error {
	return m.Called(ctx, n, key).Error(0)
}

func (m *MockDriver) ScrollBy(ctx context.Context, dx, dy int) error {
	return m.Called(ctx, dx, dy).Error(0)
}

func (m *MockDriver) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
