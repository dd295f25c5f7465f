package storage

// Collection names under each user's document tree.
const (
	CollectionSensorData    = "sensor_data"
	CollectionProcessedData = "processed_data"
	CollectionAlerts        = "alerts"
	CollectionPreferences   = "preferences"
	CollectionMedications   = "medications"
	CollectionNotes         = "notes"
)

// UserCollection builds the per-user collection path. An empty user yields an
// empty path, which stores treat as "do not persist".
func UserCollection(userID, name string) string {
	if userID == "" || name == "" {
		return ""
	}
	return "users/" + userID + "/" + name
}
