package webhook

import (
	"fmt"

	"github.com/ohler55/ojg/jp"

	"github.com/trackmock/trackmock/pkg/store"
)

// payloadPaths maps filterable field names to their JSONPath in the event
// payload. The same field names the search grammar uses apply to webhook
// filters, so `project = DEV` means the payload issue's project key.
var payloadPaths = map[string]jp.Expr{
	"key":       jp.MustParseString("$.issue.key"),
	"project":   jp.MustParseString("$.issue.fields.project.key"),
	"summary":   jp.MustParseString("$.issue.fields.summary"),
	"status":    jp.MustParseString("$.issue.fields.status.name"),
	"issuetype": jp.MustParseString("$.issue.fields.issuetype.name"),
	"type":      jp.MustParseString("$.issue.fields.issuetype.name"),
	"assignee":  jp.MustParseString("$.issue.fields.assignee.accountId"),
	"reporter":  jp.MustParseString("$.issue.fields.reporter.accountId"),
	"labels":    jp.MustParseString("$.issue.fields.labels[*]"),
	"sprint":    jp.MustParseString("$.sprint.name"),
}

// flattenPayload extracts the filterable fields from an event payload into
// the multi-valued map the query plan matches against.
func flattenPayload(ev store.Event) map[string][]string {
	data := map[string]any(ev.Payload)
	fields := map[string][]string{"event": {ev.Type}}
	for name, path := range payloadPaths {
		results := path.Get(data)
		if len(results) == 0 {
			continue
		}
		values := make([]string, 0, len(results))
		for _, r := range results {
			if r == nil {
				continue
			}
			values = append(values, fmt.Sprintf("%v", r))
		}
		if len(values) > 0 {
			fields[name] = values
		}
	}
	return fields
}
