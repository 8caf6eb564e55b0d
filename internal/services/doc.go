// Package services implements the application logic on top of the storage
// port: the master-key session, memory records, the audit log, user
// preferences and backups.
package services
