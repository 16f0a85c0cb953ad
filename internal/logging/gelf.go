package logging

import (
	"fmt"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFHandler returns a JSON handler that ships every record to a Graylog
// GELF UDP input at address.
func (m *SlogManager) NewGELFHandler(address string) (slog.Handler, *gelf.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, nil, fmt.Errorf("creating GELF writer for %s: %w", address, err)
	}
	w.Facility = "jointfeed"
	return slog.NewJSONHandler(w, m.HandlerOptions()), w, nil
}
