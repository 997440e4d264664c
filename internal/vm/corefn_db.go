package vm

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// corefn_db.go ports _examples/original_source/src/vm/vm_db.rs onto
// database/sql against modernc.org/sqlite, funxy's own direct dependency
// (SPEC_FULL.md's DOMAIN STACK table), fixing just the DB connection /
// prepared statement / exec / fetch stack contract spec.md §1 scopes out
// a full client for.
func init() {
	registerSimple(map[string]SimpleForm{
		"db-open":    fnDBOpen,
		"db-prepare": fnDBPrepare,
		"db-exec":    fnDBExec,
		"db-fetch":   fnDBFetch,
	})
}

func fnDBOpen(vm *VM) error {
	dsnV, err := vm.pop()
	if err != nil {
		return err
	}
	dsn := valueAsWord(dsnV)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("db-open: %w", err)
	}
	vm.push(FromObject(&DBConnObj{DB: db, DSN: dsn}))
	return nil
}

func fnDBPrepare(vm *VM) error {
	queryV, err := vm.pop()
	if err != nil {
		return err
	}
	connV, err := vm.pop()
	if err != nil {
		return err
	}
	conn, ok := connV.Obj.(*DBConnObj)
	if !ok {
		return fmt.Errorf("db-prepare: not a db connection")
	}
	query := valueAsWord(queryV)
	stmt, err := conn.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("db-prepare: %w", err)
	}
	vm.push(FromObject(&DBStmtObj{Stmt: stmt, Query: query}))
	return nil
}

// db-exec: (stmt args-list -- rowcount). Runs an INSERT/UPDATE/DELETE.
func fnDBExec(vm *VM) error {
	argsV, err := vm.pop()
	if err != nil {
		return err
	}
	stmtV, err := vm.pop()
	if err != nil {
		return err
	}
	stmt, ok := stmtV.Obj.(*DBStmtObj)
	if !ok {
		return fmt.Errorf("db-exec: not a prepared statement")
	}
	args := dbArgs(argsV)
	res, err := stmt.Stmt.Exec(args...)
	if err != nil {
		return fmt.Errorf("db-exec: %w", err)
	}
	n, _ := res.RowsAffected()
	vm.push(Int(int32(n)))
	return nil
}

// db-fetch: (stmt args-list -- list-of-hash). Runs a SELECT and
// materializes every row as a Hash keyed by column name.
func fnDBFetch(vm *VM) error {
	argsV, err := vm.pop()
	if err != nil {
		return err
	}
	stmtV, err := vm.pop()
	if err != nil {
		return err
	}
	stmt, ok := stmtV.Obj.(*DBStmtObj)
	if !ok {
		return fmt.Errorf("db-fetch: not a prepared statement")
	}
	args := dbArgs(argsV)
	rows, err := stmt.Stmt.Query(args...)
	if err != nil {
		return fmt.Errorf("db-fetch: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	var out []Value
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		h := NewHash()
		for i, col := range cols {
			h.Set(col, dbScanToValue(raw[i]))
		}
		out = append(out, FromObject(h))
	}
	vm.push(FromObject(&ListObj{Items: out}))
	return nil
}

func dbArgs(argsV Value) []interface{} {
	l, ok := argsV.Obj.(*ListObj)
	if !ok {
		return nil
	}
	out := make([]interface{}, len(l.Items))
	for i, v := range l.Items {
		out[i] = valueToNative(v)
	}
	return out
}

func dbScanToValue(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null
	case int64:
		return Int(int32(t))
	case float64:
		return Float(t)
	case string:
		return FromString(t)
	case []byte:
		return FromString(string(t))
	default:
		return FromString(fmt.Sprintf("%v", t))
	}
}
