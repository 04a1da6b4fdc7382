// Package all registers every built-in source driver.
//
// Each driver package defines its own Driver type and registers it via
// an init() function that calls registry.Register. Importing this
// package (even as a blank import) triggers all registrations:
//
//	import _ "github.com/airweave-core/airweave-core/internal/sources/all"
//
// Registered drivers:
//
//   - notion      — OAuth BYOC, continuous cursor via last_edited_time
//   - slack       — OAuth browser, federated search, bounded channel fan-out
//   - confluence  — direct auth (email + API token), pages and attachments
//   - sharepoint  — OAuth browser, Graph delta cursor, per-item ACLs, memberships
//   - google_docs — OAuth token, Drive v3 files.list modifiedTime cursor, file entities
//   - miro        — OAuth browser, team/board/item breadcrumb walk
//   - zoom        — OAuth browser, sequential windowed recording pagination
//   - clickup     — direct auth, bounded-concurrency list/task fan-out
//   - calendly    — OAuth token, full re-list of event types and events
//   - evernote    — OAuth BYOC with legacy OAuth 1.0a three-leg handshake
package all

import (
	_ "github.com/airweave-core/airweave-core/internal/sources/calendly"
	_ "github.com/airweave-core/airweave-core/internal/sources/clickup"
	_ "github.com/airweave-core/airweave-core/internal/sources/confluence"
	_ "github.com/airweave-core/airweave-core/internal/sources/evernote"
	_ "github.com/airweave-core/airweave-core/internal/sources/googledocs"
	_ "github.com/airweave-core/airweave-core/internal/sources/miro"
	_ "github.com/airweave-core/airweave-core/internal/sources/notion"
	_ "github.com/airweave-core/airweave-core/internal/sources/sharepoint"
	_ "github.com/airweave-core/airweave-core/internal/sources/slack"
	_ "github.com/airweave-core/airweave-core/internal/sources/zoom"
)
