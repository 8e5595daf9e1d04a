// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dashboard

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>OECD Education Data Dashboard</title>
  <style>
    body { font-family: sans-serif; margin: 2rem; color: #212529; }
    h1 { color: #2E86AB; text-align: center; }
    .metrics { display: flex; gap: 1rem; flex-wrap: wrap; }
    .metric { background: #F8F9FA; padding: 15px; border-radius: 10px; border-left: 5px solid #2E86AB; }
    table { border-collapse: collapse; margin: 1rem 0; }
    th, td { padding: 4px 12px; border-bottom: 1px solid #dee2e6; text-align: left; }
    .source { font-size: 0.8rem; color: #6c757d; font-style: italic; }
  </style>
</head>
<body>
  <h1>OECD Education Data Dashboard</h1>

  <section class="metrics">
    <div class="metric">Countries<br><strong>{{.Stats.Countries}}</strong></div>
    <div class="metric">Enrollment Records<br><strong>{{.Stats.EnrollmentRecords}}</strong></div>
    <div class="metric">Graduation Records<br><strong>{{.Stats.GraduationRecords}}</strong></div>
    <div class="metric">Spending Records<br><strong>{{.Stats.SpendingRecords}}</strong></div>
    <div class="metric">Last Updated<br><strong>{{with .Stats.LastUpdated}}{{.}}{{else}}never{{end}}</strong></div>
  </section>

  <h2>Graduation Rates ({{.Year}})</h2>
  {{if .Graduation}}
  <table>
    <tr><th>Country</th><th>Graduation Rate (%)</th><th>Completion Rate</th></tr>
    {{range .Graduation}}<tr><td>{{.CountryName}}</td><td>{{printf "%.1f" .GraduationRate}}</td><td>{{printf "%.3f" .CompletionRate}}</td></tr>
    {{end}}
  </table>
  {{else}}<p>No graduation data available for {{.Year}}</p>{{end}}

  <h2>Education Spending ({{.Year}})</h2>
  {{if .Spending}}
  <table>
    <tr><th>Country</th><th>Total (USD)</th><th>Per Capita (USD)</th></tr>
    {{range .Spending}}<tr><td>{{.CountryName}}</td><td>{{printf "%.0f" .SpendingUSD}}</td><td>{{printf "%.0f" .SpendingPerCapita}}</td></tr>
    {{end}}
  </table>
  {{with .Summary}}
  <section class="metrics">
    <div class="metric">Average Spending<br><strong>${{printf "%.0f" .Average}}</strong></div>
    <div class="metric">Highest Spending<br><strong>${{printf "%.0f" .Highest.Value}}</strong> {{.Highest.CountryName}}</div>
    <div class="metric">Lowest Spending<br><strong>${{printf "%.0f" .Lowest.Value}}</strong> {{.Lowest.CountryName}}</div>
  </section>
  {{end}}
  {{else}}<p>No spending data available for {{.Year}}</p>{{end}}

  <h2>Countries</h2>
  <ul>
    {{range .Countries}}<li><a href="/api/countries/{{.Code}}/profile">{{.Name}}</a> ({{.Region}})</li>
    {{end}}
  </ul>

  <p class="source">Data Source: OECD Education Statistics | JSON API under /api</p>
</body>
</html>
`
