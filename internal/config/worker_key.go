package config

type WorkerKeyStruct struct {
	NotifyResultsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	NotifyResultsQueue: "notify_results_queue",
}
