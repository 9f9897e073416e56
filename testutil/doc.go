// Package testutil provides testing utilities for the relays module.
//
// This package contains test fixtures and builders for go-ethereum values
// that are commonly used across tests in the relays packages.
//
// # Important Note on Import Cycles
//
// Mock implementations of the engine's collaborators (RPCClient, Signer,
// CalldataEncoder) live in the relays package's own test files to avoid
// import cycles. This package only contains utilities that don't depend on
// relays types.
//
// # Test Fixtures
//
// Common test values are provided:
//   - TestAddr1, TestAddr2, TestAddr3: Common test addresses
//   - TestPrivateKey1, TestPrivateKeyHex, TestPrivateKey1Address: Test private keys and derived address
//   - OneGwei, TenGwei, TwentyGwei: Common gas price constants
//   - ChainIDMainnet, ChainIDRopsten: Common chain IDs
//
// # Builders
//
// Helper functions for creating go-ethereum test values:
//   - NewLegacyTx: Create a legacy transaction
//   - SignedLegacyTxBytes: Create the serialized form of a signed legacy transaction
//   - NewSuccessReceipt, NewFailedReceipt: Create test receipts
package testutil
