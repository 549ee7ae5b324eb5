/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/qmsops/capa-gin/cmd"

func main() {
	cmd.Execute()
}
