// Package gameserver implements the game backend: the Service that runs
// every player action against the resolvers and stores, and the gRPC
// transport that exposes it.
//
// Actions for one account are serialized through the session manager and
// deduplicated by request id. Battles lock both accounts in id order.
package gameserver
