// Package errors provides the sentinel errors returned by the inventory stores and engines.
package errors

import "errors"

var ErrProductNotFound = errors.New("product not found")
var ErrProductAlreadyExists = errors.New("product already exists")

var ErrSaleNotFound = errors.New("sale not found")
var ErrSaleItemNotFound = errors.New("sale item not found")
var ErrEmptySale = errors.New("sale has no items")
var ErrDuplicateSaleItem = errors.New("product appears more than once in sale")
var ErrInsufficientQuantity = errors.New("insufficient product quantity")

// ErrQuantityOutOfRange is returned when a stock change would not fit the quantity column.
var ErrQuantityOutOfRange = errors.New("product quantity out of range")

// ErrInternal marks a write that the store reported as having no effect when one was expected.
var ErrInternal = errors.New("internal error")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")
