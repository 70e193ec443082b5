// Package commission dispatches referral commission notifications.
//
// The mining controller hands every successful claim to Dispatcher.Notify,
// which only enqueues. Worker goroutines drain the queue and call the
// process_referral_commission routine. Failures are logged and counted
// but never surface to the claimant, and nothing is retried.
package commission
