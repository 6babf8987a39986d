// Package notifier delivers operator messages: the text of notify tasks and
// alerts about failed runs.
//
// Notify only enqueues. A small worker pool drains the queue through a Sender
// with a shared rate limit, retries with jittered exponential backoff, and
// suppresses identical messages inside the dedup window.
//
// # Transport
//
// Telegram (via telebot) is the built-in Sender. Tests and other transports
// plug in through the Sender interface.
package notifier
