package main

import "bizmart/internal/app"

// @title           Bizmart API
// @version         1.0
// @description     Account registration, email OTP verification and session API for the Bizmart storefront.
// @BasePath        /
func main() {
	app.Run()
}
