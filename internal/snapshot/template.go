package snapshot

// pageTemplate is the price page. Substitution goes through
// html/template so every value is escaped.
const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Ticker}} Price - {{.Date}}</title>
    <style>
        body { font-family: sans-serif; text-align: center; padding: 20px; }
        .ticker { font-size: 24px; font-weight: bold; }
        .price-wrapper { margin: 20px 0; }
        .currency { display: inline; font-size: 20px; }
        .price { display: inline; font-size: 32px; font-weight: bold; }
        .date, .market { color: #666; }
        .warning-message {
            background-color: #fff3cd;
            color: #856404;
            padding: 10px;
            border-radius: 4px;
            margin-top: 0.5rem;
            font-size: 0.8rem;
        }
        .error-message {
            background-color: #f8d7da;
            color: #721c24;
            padding: 10px;
            border-radius: 4px;
            margin-top: 1rem;
            font-size: 0.9rem;
            text-align: left;
        }
    </style>
</head>
<body>
    <div class="ticker" id="ticker">{{.Ticker}}</div>
{{- if .Price}}
    <div class="price-wrapper">
        <div class="currency" id="currency">{{.Currency}}</div>
        <div class="price" id="price">{{.Price}}</div>
    </div>
{{- end}}
{{- if .Stale}}
{{- if .Price}}
    <div class="warning-message" id="warning">This is the last known price from {{if .StaleDate}}{{.StaleDate}}{{else}}a previous fetch{{end}}. Current price fetch failed.</div>
{{- end}}
    <div class="error-message" id="error">{{.Error}}</div>
{{- end}}
    <div class="date" id="date">{{if .StaleDate}}{{.StaleDate}}{{else}}{{.Date}}{{end}}</div>
    <div class="market" id="market">{{.Market}}</div>
</body>
</html>
`
