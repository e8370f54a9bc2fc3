package config

type WorkerKeyStruct struct {
	PushNotificationQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PushNotificationQueue: "push_notification_queue",
}
