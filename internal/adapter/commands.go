package adapter

import (
	"fmt"
	"strconv"

	"github.com/jointfeed/openvr-adapter/internal/dispatcher"
)

// Report is the :STATUS: reply.
type Report struct {
	State   string   `json:"state"`
	Code    int      `json:"code"`
	Detail  string   `json:"detail"`
	Message string   `json:"message"`
	DocsURI string   `json:"docsUri"`
	Tracked bool     `json:"tracked"`
	Joints  []string `json:"joints"`
}

// Report snapshots the externally visible adapter state.
func (a *Adapter) Report() Report {
	st := a.Status()
	joints := a.joints.Snapshot()
	names := make([]string, len(joints))
	for i, j := range joints {
		names[i] = j.Name
	}
	return Report{
		State:   a.State().String(),
		Code:    st.Code,
		Detail:  st.Detail.String(),
		Message: a.StatusMessage(),
		DocsURI: a.ErrorDocsURI(),
		Tracked: a.IsTracked(),
		Joints:  names,
	}
}

// RegisterCommands wires the adapter's control surface into d.
func (a *Adapter) RegisterCommands(d *dispatcher.Dispatcher) {
	d.Register(":SIGNAL:", a.handleSignal, dispatcher.Logged())
	d.Register(":STATUS:", a.handleStatus)
	d.Register(":SHUTDOWN:", a.handleShutdown, dispatcher.Logged())

	// reconnecting blocks for up to the connect timeout; one pending is enough
	d.Register(":RECONNECT:", a.handleReconnect, dispatcher.Buffered(1), dispatcher.Logged())
}

func (a *Adapter) handleSignal(c dispatcher.Command) (any, error) {
	if len(c.Args) != 1 {
		return nil, fmt.Errorf("expected 1 arg (joint index), got %d", len(c.Args))
	}
	i, err := strconv.Atoi(c.Args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid joint index %q: %w", c.Args[0], err)
	}
	a.SignalJoint(i)
	return nil, nil
}

func (a *Adapter) handleStatus(dispatcher.Command) (any, error) {
	return a.Report(), nil
}

func (a *Adapter) handleShutdown(dispatcher.Command) (any, error) {
	a.Shutdown()
	return a.Report(), nil
}

func (a *Adapter) handleReconnect(dispatcher.Command) (any, error) {
	a.Shutdown()
	a.Initialize()
	if !a.Status().IsOK() {
		return nil, fmt.Errorf("reconnect failed: %s", a.Status())
	}
	return nil, nil
}
