// Package mining issues time-boxed token rewards against a finite global supply.
//
// Each user cycles between LOCKED (now < NextEligibleAt) and ELIGIBLE. A claim
// by an eligible user reserves up to the user's referral-boosted rate from the
// global supply, issues a coin for the granted amount, records an audit
// transaction and locks the user for one interval. Reservation, profile update,
// coin and transaction are one atomic unit in the Store; the referral
// commission is notified after commit and may fail on its own.
package mining
