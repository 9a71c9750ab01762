// Package repository defines the persistence gateway: the entities the core
// works with and the narrow interfaces every storage adapter implements.
//
// Adapters translate their backend errors to the sentinel errors in errors.go
// so services can branch with errors.Is without knowing the driver.
package repository
