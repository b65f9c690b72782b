package bot

import (
	"fmt"

	"github.com/open-builders/image-delivery-bot/internal/domain/chat"
	"github.com/open-builders/image-delivery-bot/internal/service/delivery"
)

const (
	msgInvalidKey    = "Invalid activation key. Please try again or contact support."
	msgCancelled     = "Operation cancelled. Use /start to begin again."
	msgLoggedOut     = "You have been logged out. Use /start to login again."
	msgExpired       = "Your session has expired. Please use /start to begin again."
	msgRevoked       = "Your activation key is no longer valid. Please contact support."
	msgStoreFailure  = "Something went wrong while checking your account. Please try again later."
	msgNoImages      = "No images found for your account. Please contact support or try again later."
	msgNothingToday  = "No images available for today. Check back later!"
	msgUpToDate      = "No new images found. You're up to date!"
	msgAllDelivered  = "All images delivered! Use the buttons below for more options."
	msgFoundUpdates  = "Found new or updated images! Fetching updates..."

	msgHelp = "How to use this bot:\n\n" +
		"1. Start with /start and enter your activation key\n" +
		"2. Once validated, use the buttons to get images\n" +
		"3. 'Get Today's Images' will show all images for today\n" +
		"4. 'Refresh Images' will check for new updates\n\n" +
		"If you need assistance, please contact support."
)

var (
	btnGetImages = chat.Button{Text: "Get Today's Images", Data: ActionGetImages}
	btnRefresh   = chat.Button{Text: "Refresh Images", Data: ActionRefreshImages}
	btnLogout    = chat.Button{Text: "Logout", Data: ActionLogout}
)

func welcomeKeyboard() chat.Keyboard { return chat.Column(btnGetImages, btnRefresh) }
func controlKeyboard() chat.Keyboard { return chat.Column(btnGetImages, btnRefresh, btnLogout) }
func refreshKeyboard() chat.Keyboard { return chat.Column(btnRefresh) }

func greeting(firstName string) string {
	if firstName == "" {
		firstName = "there"
	}
	return fmt.Sprintf("Hi %s! Welcome to the Image Delivery Bot.\n\n"+
		"Please enter your activation key to access your images:", firstName)
}

func welcome(name string) string {
	return fmt.Sprintf("Welcome %s! Your activation key has been validated.\nWhat would you like to do?", name)
}

func sendingText(total int) string {
	return fmt.Sprintf("Sending %d images...", total)
}

func emptyText(r *delivery.Report) string {
	if r.NoImages {
		return msgNoImages
	}
	return msgNothingToday
}

func completionText(r *delivery.Report) string {
	if r.Errors == 0 {
		return msgAllDelivered
	}
	return fmt.Sprintf("Delivered %d of %d images. Use the buttons below for more options.", r.Sent, r.Total)
}
