package main

import "net/http"

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>sessiond</title>
<style>
body{font-family:system-ui,sans-serif;background:#191919;color:#e5e5e5;display:flex;min-height:100vh;align-items:center;justify-content:center}
main{max-width:420px;text-align:center}
h1{font-weight:600;margin-bottom:8px}
p{color:#737373;line-height:1.5}
code{background:#242424;border:1px solid #333;border-radius:4px;padding:2px 6px}
</style>
</head>
<body>
<main>
<h1>sessiond</h1>
<p>Two-party chat session server. Connect over WebSocket at
<code>/ws?token=&lt;jwt&gt;</code>; health at <code>/health</code>.</p>
</main>
</body>
</html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}
