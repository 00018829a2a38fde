package view

import (
	"bytes"
	"html/template"
)

// QRCodePageData provides the dynamic fields required by the public QR code page.
type QRCodePageData struct {
	Title string
	// Image is a data:image/png;base64 URL.
	Image string
}

var qrCodePageTmpl = template.Must(template.New("qrcode_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<title>{{if .Title}}{{.Title}}{{else}}QR code{{end}}</title>
	<style>
		:root {
			--bg: #f6f6f7;
			--card: #ffffff;
			--border: #e1e3e5;
			--text: #202223;
			--muted: #6d7175;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: var(--bg);
			color: var(--text);
		}
		main {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min(420px, 92vw);
			text-align: center;
			box-shadow: 0 20px 45px rgba(0,0,0,0.08);
		}
		h2 {
			font-size: 1.4rem;
			margin: 0 0 20px;
			word-break: break-word;
		}
		img {
			width: 100%;
			max-width: 320px;
			image-rendering: pixelated;
		}
		.hint {
			margin-top: 16px;
			font-size: 0.85rem;
			color: var(--muted);
		}
	</style>
</head>
<body>
	<main>
		<h2>{{.Title}}</h2>
		<img src="{{.Image}}" alt="QR Code for product" />
		<div class="hint">Scan with your phone camera</div>
	</main>
</body>
</html>
`))

// RenderQRCodePage expands the public QR code page template with the provided data.
func RenderQRCodePage(data QRCodePageData) (string, error) {
	// Image is generated server-side, so the data: scheme is trusted here.
	page := struct {
		Title string
		Image template.URL
	}{
		Title: data.Title,
		Image: template.URL(data.Image),
	}

	var buf bytes.Buffer
	if err := qrCodePageTmpl.Execute(&buf, page); err != nil {
		return "", err
	}
	return buf.String(), nil
}
