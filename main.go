package main

import "github.com/mrgentlewombat/spring-practice-2025/cmd"

func main() {
	cmd.Execute()
}
