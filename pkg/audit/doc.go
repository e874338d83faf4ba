// Package audit provides an audit trail for authentication events.
//
// Every request to an authentication endpoint is recorded with its
// outcome, actor, and request context. Events can be written to a
// JSON-lines file, a Postgres table, or both at once:
//
//	fileLogger, err := audit.NewFileLogger("/var/log/kubeconsole/audit.log")
//	if err != nil {
//		log.Fatal(err)
//	}
//	dbLogger := audit.NewDBLogger(db)
//	logger := audit.MultiLogger{fileLogger, dbLogger}
//
//	handler = audit.Middleware(logger)(handler)
//
// Handlers that want to enrich events with actor information can pull
// the configured logger back out of the request context with
// audit.FromContext, which falls back to a no-op logger when auditing
// is not configured.
package audit
