// Package records defines the tabular record model and the pure filter that
// selects which batches a run transfers.
//
// Records expose an explicit column-name-to-string mapping with presence
// checks; the filter is deterministic and side-effect free. Loading rows from
// a concrete spreadsheet lives in the excel subpackage behind the Source
// interface.
package records
