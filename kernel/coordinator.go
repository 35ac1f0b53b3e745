package kernel

import (
	"context"
	"fmt"

	"github.com/r-wasm/jupyterlite-webr-kernel/protocol"
)

// coordinator drives one execute_request from receipt to completion. It
// operates on the session's mutable state by reference; the caller holds
// the execute lane for the whole lifetime of the request.
type coordinator struct {
	s  *Session
	st *sessionState
}

// execute runs the full request lifecycle: busy status, counter increment,
// shelter acquisition, evaluation, output translation, reply, unconditional
// shelter release, idle status. A failed shelter release is fatal to the
// session and is the only error this method returns.
func (c *coordinator) execute(ctx context.Context, parent *protocol.Header, req protocol.ExecuteRequest) error {
	s := c.s

	s.setState(StateBusy)
	s.publishStatus(protocol.StateBusy, parent)

	// The counter moves before evaluation so the reported count covers
	// this request even when it fails.
	if req.ShouldStoreHistory() {
		s.mu.Lock()
		c.st.execCount++
		s.mu.Unlock()
	}
	s.mu.Lock()
	count := c.st.execCount
	s.mu.Unlock()

	var leakErr error
	if err := s.awaitReady(ctx); err != nil {
		c.replyError(parent, count, err)
	} else if shelter, err := s.interp.NewShelter(ctx); err != nil {
		c.replyError(parent, count, err)
	} else {
		if err := c.run(ctx, parent, req, count); err != nil {
			c.replyError(parent, count, err)
		}
		if err := shelter.Release(ctx); err != nil {
			s.log.Error().Err(err).Msg("shelter release failed, session unusable")
			leakErr = fmt.Errorf("%w: %v", ErrShelterLeak, err)
			s.mu.Lock()
			s.fatal = leakErr
			s.mu.Unlock()
		}
	}

	s.publishStatus(protocol.StateIdle, parent)
	s.setState(StateIdle)
	return leakErr
}

// run covers evaluation and the ordered translation of its outputs. Output
// items are classified and emitted strictly sequentially in capture order;
// same-channel output must never be reordered.
func (c *coordinator) run(ctx context.Context, parent *protocol.Header, req protocol.ExecuteRequest, count int) error {
	s := c.s

	res, evalErr := s.interp.Eval(ctx, req.Code)

	if res != nil {
		for _, item := range res.Items {
			content, ok := classify(item)
			if !ok {
				s.log.Debug().Str("kind", item.Kind).Msg("dropping unknown output item")
				continue
			}
			s.send(parent, protocol.MsgStream, protocol.ChannelIOPub, content)
		}
	}

	if evalErr != nil {
		return evalErr
	}

	if res.Visible && res.Value != "" {
		s.send(parent, protocol.MsgExecuteResult, protocol.ChannelIOPub, protocol.ExecuteResult{
			ExecutionCount: count,
			Data:           map[string]any{"text/plain": res.Value},
			Metadata:       map[string]any{},
		})
	}

	display, err := s.differ.check(ctx, &c.st.plot)
	if err != nil {
		return err
	}
	if display != nil {
		s.send(parent, protocol.MsgDisplayData, protocol.ChannelIOPub, *display)
	}

	s.send(parent, protocol.MsgExecuteReply, protocol.ChannelShell, protocol.ExecuteReply{
		Status:          "ok",
		ExecutionCount:  count,
		UserExpressions: map[string]any{},
	})
	return nil
}

// replyError surfaces a failed request: one stderr stream line with an
// "Error: " prefix, then a structured error reply. Traceback reconstruction
// is not attempted.
func (c *coordinator) replyError(parent *protocol.Header, count int, err error) {
	msg := err.Error()
	c.s.send(parent, protocol.MsgStream, protocol.ChannelIOPub, protocol.Stream{
		Name: protocol.StreamStderr,
		Text: "Error: " + msg + "\n",
	})
	c.s.send(parent, protocol.MsgExecuteReply, protocol.ChannelShell, protocol.ExecuteReply{
		Status:         "error",
		ExecutionCount: count,
		Ename:          "error",
		Evalue:         msg,
		Traceback:      []string{},
	})
}
