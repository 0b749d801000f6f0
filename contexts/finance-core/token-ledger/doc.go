// Package tokenledger contains the stornet fungible accounting ledger.
//
// The ledger tracks a single asset in integer base units with owner-gated
// minting and transfer/approve/transfer-from semantics. The module keeps
// domain/application logic decoupled from runtime/platform concerns through
// ports and adapter composition.
package tokenledger
