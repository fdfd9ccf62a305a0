// Package friends implements the friend graph: directed pending requests and
// undirected friendships.
//
// Per unordered pair of users there is at most one pending request and never
// a pending request alongside a friendship. Self requests are refused.
// Accepting deletes the request and creates the friendship in one database
// transaction. Removal deletes both possible orderings and is idempotent.
package friends
