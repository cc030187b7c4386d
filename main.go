package main

import "github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/cli"

func main() {
	cli.Execute()
}
