// Package presence tracks which users are online and through which
// connection.
//
// Presence is advisory. A reconnect overwrites the previous entry, explicit
// logoff removes it, and entries whose heartbeat is older than the configured
// timeout are expired by the chat engine's sweep loop, because transport
// disconnects are not reliably observed.
package presence
