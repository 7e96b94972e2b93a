// Package bridge implements the line protocol a running script uses to call
// host capabilities.
//
// The script writes requests to its output stream and blocks reading its
// input stream for the reply. Each request is one line:
//
//	@@SCRIPTBRIDGE_REQUEST@@{"id":1,"function":"exec_sql","args":["SELECT 1"]}
//
// and each reply is one line:
//
//	@@SCRIPTBRIDGE_RESPONSE@@{"id":1,"result":[{"1":1}]}
//	@@SCRIPTBRIDGE_RESPONSE@@{"id":1,"error":"no rows","kind":"NoDataAvailable"}
//
// Every other output line is forwarded to a [LineSink] as diagnostics. A line
// carrying the request marker but an undecodable payload is answered with an
// error reply whose id is -1, and serving continues.
//
// A [Session] serves exactly one script run. Requests are handled strictly in
// order, so at most one is in flight. The session records every call and the
// first structured failure a capability returned; [Session.Report] may be read
// while serving is still in progress.
package bridge
