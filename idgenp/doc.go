// idgenp is a powerputty package for generating unique integer ids from a database table.
//
// The Allocator keeps one row per sequence, `(key, current_id)`, where current_id is the next
// free id. Instances claim blocks of ids from the row with a conditional update, and serve the
// block from memory:
//
//	UPDATE id_generator SET current_id = :next WHERE object_type = :key AND current_id = :seen
//
// An update that affects no rows means another instance claimed in between, so the claim is
// simply retried. No database lock is held between statements, and any number of instances,
// in any number of processes, can share a row.
//
// Gaps: ids still in memory when a process stops are never handed out. Use a BlockSize of 0,
// or call SaveChangesToID in the same transaction as the insert using the id, to avoid them.
package idgenp
