package store

// SystemSettingSchemaVersionName keys the schema version stamp Migrate
// writes after bringing the tables up to date.
const SystemSettingSchemaVersionName = "schema_version"

// SystemSetting is an instance-wide key/value record.
type SystemSetting struct {
	Name  string
	Value string
}
