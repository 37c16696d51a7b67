package tasks

// DefineTasks registers all available tasks
func DefineTasks() {
	// Pending order expiry sweep
	RegisterHandler(ExpirePendingOrdersTask.TaskID(), ExpirePendingOrdersTask.HandleExecution)

	// Receipt notifications
	RegisterHandler(SendPaymentReceiptTask.TaskID(), SendPaymentReceiptTask.HandleExecution)
}
