// Package queue persists processing jobs in SQLite and executes them with a
// single-flight scheduler. One job runs at a time across the whole system;
// pending jobs wait in priority order, then creation order. Jobs carry typed
// outcomes once completed and a terminal error message once failed or
// cancelled.
package queue
