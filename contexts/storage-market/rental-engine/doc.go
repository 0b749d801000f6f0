// Package rentalengine contains the stornet marketplace execution engine.
//
// Providers publish storage listings, consumers reserve them for a fixed
// duration, and payment is escrowed through pre-approved allowances on the
// token ledger and released when the rental completes. Every operation is an
// atomic state transition driven by an authenticated caller address.
package rentalengine
