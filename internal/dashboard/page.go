package dashboard

import (
	"bytes"
	"html/template"
	"net/http"

	"hedgedash/internal/logger"
	"hedgedash/internal/report"
	"hedgedash/internal/types"
)

type pageData struct {
	Notional   string
	HedgeError string
	Hedge      *types.HedgeTable
	HedgeRows  [][]string
	Notice     string

	NavError string
	Nav      *types.NavSummary
	NavRows  [][]string
}

func (d *pageData) setHedge(t *types.HedgeTable) {
	d.Hedge = t
	d.HedgeRows = report.HedgeCells(t)
	if len(t.Rows) == 0 {
		d.Notice = msgUnavailable
	}
}

func (d *pageData) setNav(s *types.NavSummary) {
	d.Nav = s
	d.NavRows = report.NavCells(s)
}

func (d pageData) HedgeColumns() []string { return report.HedgeColumns }
func (d pageData) NavColumns() []string   { return report.NavColumns }

var page = template.Must(template.New("page").Parse(pageHTML))

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to render page", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

const pageHTML = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<title>股指期货对冲计算</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-top: 1em; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: right; }
.error { color: #b00; }
.notice { color: #a60; }
</style>
</head>
<body>
<h1>股指期货对冲计算</h1>
<form method="post" action="/hedge">
  <label>名义本金（万元） <input type="text" name="notional" value="{{.Notional}}"></label>
  <button type="submit">计算</button>
</form>
{{with .HedgeError}}<p class="error">{{.}}</p>{{end}}
{{with .Notice}}<p class="notice">{{.}}</p>{{end}}
{{if .HedgeRows}}
<p>数据更新时间：{{.Hedge.DataUpdated}}</p>
<table id="hedge">
<tr>{{range .HedgeColumns}}<th>{{.}}</th>{{end}}</tr>
{{range .HedgeRows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
{{end}}

<h1>持仓净值</h1>
<form method="post" action="/holdings">
  <label>密码 <input type="password" name="password"></label>
  <button type="submit">刷新</button>
</form>
{{with .NavError}}<p class="error">{{.}}</p>{{end}}
{{with .Nav}}
<table id="holdings">
<tr>{{range $.NavColumns}}<th>{{.}}</th>{{end}}</tr>
{{range $.NavRows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}<tr><td>合计</td><td></td><td></td><td>{{.TotalPre.StringFixed 2}}</td><td>{{.TotalPost.StringFixed 2}}</td><td>{{.TotalFee.StringFixed 2}}</td><td></td><td></td><td></td></tr>
</table>
<p>成本 {{.CostBasis.StringFixed 2}}，自 {{.PnLSince}} 起盈亏 {{.PnL.StringFixed 2}}</p>
{{if .Errors}}<ul class="error">{{range .Errors}}<li>{{.Vendor}}: {{.Error}}</li>{{end}}</ul>{{end}}
{{end}}
</body>
</html>
`
