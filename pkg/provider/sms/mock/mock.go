// Package mock provides a test double for the sms.Provider interface.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/drivewise/pkg/provider/sms"
)

var _ sms.Provider = (*Provider)(nil)

// Provider records sent messages. Err, if set, is returned instead.
type Provider struct {
	mu   sync.Mutex
	Err  error
	Sent []sms.Message
}

// Send implements sms.Provider.
func (p *Provider) Send(_ context.Context, msg sms.Message) (*sms.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	p.Sent = append(p.Sent, msg)
	return &sms.Receipt{ID: fmt.Sprintf("mock-%d", len(p.Sent)), Status: "queued"}, nil
}

// Messages returns a copy of the sent messages.
func (p *Provider) Messages() []sms.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sms.Message(nil), p.Sent...)
}
