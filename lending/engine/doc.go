// Package engine orchestrates the cross-entity lending operations on top of the inventory,
// accounts and loans components.
//
// The three aggregates share no transaction boundary. Borrow and return are therefore fixed,
// ordered sequences of conditional writes:
//
//	borrow: create loan -> decrement book -> append loan id to student
//	return: mark loan returned -> increment book -> remove loan id from student
//
// A borrow that fails after the loan was created is compensated: the loan is voided, a taken
// copy is put back and the loan id is removed from the student again. When a compensation
// cannot complete, the loan stays the source of truth and Reconcile repairs the student's list.
package engine
