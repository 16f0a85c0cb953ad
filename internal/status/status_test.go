package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jointfeed/openvr-adapter/internal/elevation"
)

func TestDocsURI(t *testing.T) {
	tests := []struct {
		code int
		lang string
		want string
	}{
		{code: CodeDriverMissing, lang: "en", want: "https://docs.example/en/error-codes/#2"},
		{code: CodeDriverFailure, lang: "ja", want: "https://docs.example/ja/error-codes/#3"},
		{code: CodeError, lang: "en", want: "https://docs.example/en/error-codes/#6"},
		{code: CodeOK, lang: "", want: "https://docs.example/en/error-codes/#6"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DocsURI("https://docs.example/", tt.lang, tt.code))
	}
}

func TestFromMismatch(t *testing.T) {
	assert.Equal(t, OK, FromMismatch(elevation.None))
	assert.Equal(t, Status{Code: 1, Detail: DetailSelfElevated}, FromMismatch(elevation.SelfElevated))
	assert.Equal(t, Status{Code: 1, Detail: DetailRuntimeElevated}, FromMismatch(elevation.RuntimeElevated))
}

func TestLocalizationKey(t *testing.T) {
	assert.Equal(t, "/Plugins/OpenVR/Statuses/Success", OK.LocalizationKey())
	assert.Equal(t, "/Plugins/OpenVR/Statuses/Timeout", Error(DetailTimeout).LocalizationKey())
	assert.Equal(t, "1 (Shutdown)", Error(DetailShutdown).String())
}
