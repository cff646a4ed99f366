// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

package db

// Result is the uniform outcome envelope returned across the caller-facing
// boundary. Internal failures are converted into it, never propagated as
// raw faults.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// QueryResult carries the rows of an ad hoc query.
type QueryResult struct {
	Result
	Rows     []map[string]any `json:"rows,omitempty"`
	RowCount int              `json:"rowCount"`
}

// CompanyResult carries the resolved company id of a get-or-create call.
type CompanyResult struct {
	Result
	CompanyID string `json:"companyId,omitempty"`
}

// ok builds a success Result with an optional message.
func ok(message string) Result {
	return Result{Success: true, Message: message}
}

// fail converts an internal error into a failure Result.
func fail(err error) Result {
	return Result{Success: false, Error: err.Error()}
}
