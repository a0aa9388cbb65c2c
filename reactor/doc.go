// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package reactor provides the single-threaded readiness-notification
// primitive under the transfer engine: level-triggered polling over a
// dynamic set of descriptors with per-descriptor interest sets and a
// bounded wait. Linux uses epoll(7); other platforms get a stub that
// fails at construction.
package reactor
