package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `voicematch pairs community members for one-on-one voice sessions.

Core concepts:
- Queue: each community has a general queue and, when configured, two category queues.
  A participant becomes eligible a fixed delay after joining.
- Sweep: every few seconds eligible participants are paired at random and a private
  voice channel is provisioned for each pair. Both participants get a direct message.
- Session: a provisioned channel. It is destroyed once both participants have been in it
  together and it empties, or when nobody has been in it for the idle timeout.

Typical workflow:
1) join_queue for a participant (bucket empty for general, or a category / labels).
2) queue_status to see ready and waiting counts.
3) run_sweep to pair immediately, or wait for the background tick.
4) membership_event when a participant enters or leaves a session channel.
5) list_sessions / recent_activity to inspect what happened.

community_id is optional on every tool; it defaults to the caller's community.

Docs:
- voicematch://docs/index
- voicematch://docs/lifecycle
- voicematch://docs/categories
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "voicematch://docs/index",
		Name:        "docs_index",
		Title:       "voicematch docs index",
		Description: "Entry point: what each tool does and which doc to read next.",
		Content: `# voicematch: Docs Index

## Tools

| Tool | Use it to |
|---|---|
| join_queue | queue a participant; a duplicate join reports the seconds left |
| cancel_queue | leave a queue; removed=false when not waiting there |
| queue_status | ready / waiting totals per queue and session phase counts |
| membership_event | report a channel entry or departure |
| list_sessions | inspect tracked sessions and their phases |
| recent_activity | match history, newest first |
| run_sweep | pair eligible participants now |
| run_watchdog | reclaim idle sessions now |

## Read next

- voicematch://docs/lifecycle for how sessions open and close
- voicematch://docs/categories for cross-category queues
`,
	},
	{
		URI:         "voicematch://docs/lifecycle",
		Name:        "docs_lifecycle",
		Title:       "Session lifecycle",
		Description: "Phases of a session and when it is reclaimed.",
		Content: `# Session lifecycle

A sweep claims a pair, removes both participants from every queue, and provisions a
channel only they may enter. The session starts in **awaiting_first_join**.

| Phase | Meaning |
|---|---|
| awaiting_first_join | nobody has entered yet |
| occupied | someone has entered and someone is present now |
| fully_met | both participants were present at the same moment |
| stranded | used, never fully met, empty now |
| retiring | a destroy is in flight |

Closing rules:
- A fully met session is destroyed as soon as it empties.
- A session nobody ever entered is destroyed once the idle timeout passes.
- A stranded session is kept unless the server enables stranded reclamation.

If provisioning fails both participants get the error text and must rejoin.
A participant who no longer exists on the platform is dropped without notice.
`,
	},
	{
		URI:         "voicematch://docs/categories",
		Name:        "docs_categories",
		Title:       "Category queues",
		Description: "How cross-category matching admits and pairs participants.",
		Content: `# Category queues

When two categories are configured each one gets its own queue. A cross-category sweep
only pairs a participant from one category with a participant from the other.

Admission:
- Pass bucket explicitly, or leave it empty and pass labels.
- Exactly one category label must be present; none or both is rejected.
- A participant may wait in the general queue and in one category at the same time.
  Waiting in both categories is rejected with CATEGORY_CONFLICT.

Once paired by either sweep the participant leaves every queue.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
