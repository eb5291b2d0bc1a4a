// Package models defines the core domain records for Ducats.
//
// # Records
//
//   - Project: a named ledger that owns zero or more expenses
//   - Expense: one recorded spend (amount, date, free text, optional receipt image)
//
// # Ownership
//
// A Project exclusively owns its Expenses. Deleting a Project deletes every
// Expense it owns. Expense.ProjectID is a lookup reference only; nothing walks
// it to decide what to delete.
//
// # Design Principles
//
//  1. **Identity, not position**: records are addressed by ID, never by an index
//     into a displayed list
//  2. **Always present collections**: Project.Expenses is empty, never nil, once
//     loaded by the engine
//  3. **Exact money**: amounts are decimals, never floats
package models
