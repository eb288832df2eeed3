package http

import (
	"html/template"
	"log/slog"
	"net/http"
)

// callbackCloseDelayMS is how long the popup stays visible before it
// closes itself.
const callbackCloseDelayMS = 3000

// CallbackPageHandler renders the popup notification page. It holds no
// state: the flow outcome arrives in query parameters, gets posted to
// the opening window and the popup closes itself.
type CallbackPageHandler struct {
	targetOrigin string
	logger       *slog.Logger
}

// NewCallbackPageHandler creates a handler posting messages to the
// given frontend origin only.
func NewCallbackPageHandler(targetOrigin string, logger *slog.Logger) *CallbackPageHandler {
	return &CallbackPageHandler{targetOrigin: targetOrigin, logger: logger}
}

type callbackPageData struct {
	Success      bool
	Service      string
	Error        string
	TargetOrigin string
	CloseDelayMS int
}

var callbackPageTemplate = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{if .Success}}Connected{{else}}Connection failed{{end}}</title>
<style>
body { font-family: system-ui, sans-serif; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
main { text-align: center; }
h1 { font-size: 1.2rem; }
p { color: #555; }
</style>
</head>
<body>
<main>
{{if .Success}}
<h1>{{.Service}} connected</h1>
<p>You can close this window.</p>
{{else}}
<h1>Could not connect {{.Service}}</h1>
<p>{{if .Error}}{{.Error}}{{else}}Something went wrong. Please try again.{{end}}</p>
{{end}}
</main>
<script>
(function () {
  var message = {
    type: "oauth-callback",
    success: {{.Success}},
    service: {{.Service}},
    error: {{.Error}}
  };
  if (window.opener) {
    window.opener.postMessage(message, {{.TargetOrigin}});
  }
  setTimeout(function () { window.close(); }, {{.CloseDelayMS}});
})();
</script>
</body>
</html>
`))

// Render handles GET /oauth-callback
func (h *CallbackPageHandler) Render(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	data := callbackPageData{
		Success:      query.Get("success") == "true",
		Service:      query.Get("service"),
		Error:        query.Get("error"),
		TargetOrigin: h.targetOrigin,
		CloseDelayMS: callbackCloseDelayMS,
	}
	if data.Service == "" {
		data.Service = "Service"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := callbackPageTemplate.Execute(w, data); err != nil {
		h.logger.Error("callback page render failed", "error", err)
	}
}
