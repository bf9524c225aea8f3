package domain

// DriverInfo holds the driver facts attached to a ride at assignment time.
type DriverInfo struct {
	ID            string
	Name          string
	Phone         string
	VehicleNumber string
	Rating        float64
}
