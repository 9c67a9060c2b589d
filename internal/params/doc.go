// Package params parses the named arguments the CLI passes to stored
// procedures.
//
// Arguments come from --param flags and from .env style files:
//
//	--param name=value           text argument
//	--param total:integer=42     typed argument, converted before sending
//	--params-file args.env       NAME=VALUE lines, read with godotenv, always text
//
// Order is preserved so the rendered call lists arguments in the order they
// were given. A name given on the command line replaces the same name from
// a file and keeps the file's position.
//
// # Types
//
// The type after the colon is a PostgreSQL type name or a short alias:
// text, varchar, int/integer, smallint, bigint, real, double, numeric,
// bool/boolean, uuid, json/jsonb, date, timestamp, timestamptz, interval.
package params
