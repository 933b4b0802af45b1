// Package catalog provides the domain types shared by every other internal
// package: features, their tag associations, availability entries, and the
// sync checkpoint record.
//
// This package contains type definitions only. All other internal packages
// import catalog; catalog imports nothing internal. This keeps it the
// foundational layer with no circular dependencies.
package catalog
