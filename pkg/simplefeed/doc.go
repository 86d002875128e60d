// Package simplefeed provides a reusable library for an authorized
// content-feed backend: short posts that are created, updated, and deleted by
// their owning author, served through paginated and full-text queries, with
// mutation events fanned out to live in-process subscribers.
//
// It exposes a single Service interface that orchestrates authentication
// (via a pluggable TokenVerifier), ownership-based authorization, post
// persistence, and event publication. Implementations of repositories
// (memory, Postgres, MongoDB) and blob stores (memory, S3) are provided
// under subpackages.
//
// Event Delivery
//
// Mutation events are transient and in-memory only. A Bus instance is
// constructed explicitly and injected into the Service; each subscriber owns
// a bounded queue and receives the events of one topic in publish order.
// Subscribers registered after a publish never see that event, and a slow
// subscriber never stalls a mutation (the default overflow policy drops the
// oldest queued event).
package simplefeed
